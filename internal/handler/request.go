// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/planauth/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// validate はリクエストボディの検証に使う共有インスタンス。
var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeRequest はJSONボディをdstに読み込み、validateタグで検証する。
// 失敗時はBadRequest種別のエラーを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return model.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
		}
		return model.NewValidationError("invalid JSON body")
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return model.NewValidationError(describeValidationErrors(validationErrors))
		}
		return model.NewValidationError("invalid request")
	}
	return nil
}

// describeValidationErrors は検証エラーを "email: email, password: min=8" の形式にまとめる。
func describeValidationErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		parts = append(parts, strings.ToLower(fe.Field())+": "+tag)
	}
	return strings.Join(parts, ", ")
}

// writeJSON はvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
