package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// CallbackDataSeparator joins the action and its arguments, e.g. "admin:branch:edit:3".
	CallbackDataSeparator = ":"
	// CallbackDataLimitBytes is Telegram's limit on callback data.
	CallbackDataLimitBytes = 64
)

// ErrEmptyCallback is returned for a button press without data.
var ErrEmptyCallback = errors.New("callback data is empty")

// EncodeCallback joins action and data and enforces the Telegram size limit.
func EncodeCallback(action, data string) (string, error) {
	payload := action
	if data != "" {
		payload += CallbackDataSeparator + data
	}
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data %q exceeds %d bytes", truncateBytes(payload, 16), CallbackDataLimitBytes)
	}
	return payload, nil
}

// DecodeCallback splits callback data at the first separator.
func DecodeCallback(callbackData string) (action, data string, err error) {
	if callbackData == "" {
		return "", "", ErrEmptyCallback
	}
	action, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return action, data, nil
}

// SplitData splits a decoded payload such as "item:5" into its parts.
func SplitData(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(data, CallbackDataSeparator)
}

// ParseID reads a positive record id from a payload part or a typed message.
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// FormatID is the inverse of ParseID.
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func joinData(parts []string) string {
	return strings.Join(parts, CallbackDataSeparator)
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
