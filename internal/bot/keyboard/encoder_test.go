package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
)

func TestEncodeCallback(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		data    string
		want    string
		wantErr bool
	}{
		{name: "reply button", action: "reply", data: "17", want: "reply:17"},
		{name: "nested admin action", action: "admin", data: "item:del:4", want: "admin:item:del:4"},
		{name: "bare action", action: "inventory", want: "inventory"},
		{name: "over the limit", action: "admin", data: strings.Repeat("9", keyboard.CallbackDataLimitBytes), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyboard.EncodeCallback(tt.action, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	action, data, err := keyboard.DecodeCallback("admin:branch:edit:3")
	require.NoError(t, err)
	assert.Equal(t, "admin", action)
	assert.Equal(t, "branch:edit:3", data)
	assert.Equal(t, []string{"branch", "edit", "3"}, keyboard.SplitData(data))

	action, data, err = keyboard.DecodeCallback("cart_done")
	require.NoError(t, err)
	assert.Equal(t, "cart_done", action)
	assert.Empty(t, data)
	assert.Nil(t, keyboard.SplitData(data))

	_, _, err = keyboard.DecodeCallback("")
	assert.ErrorIs(t, err, keyboard.ErrEmptyCallback)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want uint
		ok   bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"12a", 0, false},
		{"", 0, false},
		{"99999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := keyboard.ParseID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "15", keyboard.FormatID(15))
}
