package sender

import "fmt"

// httpStatusError 非 200 响应
type httpStatusError struct {
	op         string
	statusCode int
	body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: status=%d, body=%s", e.op, e.statusCode, e.body)
}
