package agent

import "fmt"

// AuthError - сессия недействительна (HTTP 401).
// Клиент уже уведомил session manager до возврата этой ошибки.
type AuthError struct{}

func (e *AuthError) Error() string {
	return "unauthorized: session is invalid or expired"
}

// HTTPError - любой другой не-2xx ответ бэкенда.
// Detail берётся из поля "detail" тела ответа, если оно есть.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}

	return fmt.Sprintf("backend returned HTTP %d", e.Status)
}

// NetworkError - сам запрос не дошёл до бэкенда (offline, DNS, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
