package api

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Code    string `json:"code,omitempty"`    // машиночитаемый код
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
