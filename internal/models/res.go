package models

type ApiResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Field     string      `json:"field,omitempty"`
	Code      string      `json:"code,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Page      int         `json:"page,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Total     int64       `json:"total,omitempty"`
	Pages     int         `json:"pages,omitempty"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func ErrorResponse(err string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
	}
}

// FieldErrorResponse names the offending input field.
func FieldErrorResponse(fe *FieldError) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   fe.Error(),
		Field:   fe.Field,
	}
}

func CodedErrorResponse(err, code string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

func PaginatedResponse(data interface{}, info PageInfo) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Page:    info.Page,
		Limit:   info.Limit,
		Total:   info.Total,
		Pages:   info.Pages,
	}
}
