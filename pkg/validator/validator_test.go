package validator_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/pkg/validator"
)

func TestStructCommentParams(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", "Congrats on the launch!", false},
		{"empty", "", true},
		{"whitespace", " \n\t ", true},
		{"at limit", strings.Repeat("a", 1000), false},
		{"over limit", strings.Repeat("a", 1001), true},
		{"multibyte at limit", strings.Repeat("é", 1000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Struct(domain.CommentParams{Content: tt.content})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.True(t, verrs.HasErrors())
			assert.Equal(t, "content", verrs[0].Field)
		})
	}
}

func TestStructReportsJSONNames(t *testing.T) {
	err := validator.Struct(domain.SendRequestParams{ReceiverID: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receiver_id: must be greater than 0")

	err = validator.Struct(domain.RespondParams{Action: "ignore"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action: must be one of: accept, decline")

	assert.NoError(t, validator.Struct(domain.LikeParams{}))
	assert.Error(t, validator.Struct(domain.LikeParams{Reaction: "meh"}))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", validator.SanitizeString("  abcdef ", 3))
	assert.Equal(t, "héé", validator.SanitizeString("hééllo", 3))
}
