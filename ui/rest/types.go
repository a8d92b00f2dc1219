package rest

// ResponseData is the envelope every admin API endpoint responds with.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

func success(message string, results any) ResponseData {
	return ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	}
}

func failure(status int, code, message string) ResponseData {
	return ResponseData{
		Status:  status,
		Code:    code,
		Message: message,
	}
}
