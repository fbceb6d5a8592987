package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "voxid/pkg/domain-errors"
)

type datasetLike struct {
	RequestedBy string `json:"requested_by" validate:"required,notblank,max=128"`
	UseCase     string `json:"use_case" validate:"max=64"`
}

type accountLike struct {
	AccountID string `json:"account_id" validate:"accountid"`
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		name string
		req  any
		want string
	}{
		{"required uses json name", &datasetLike{}, "requested_by is required"},
		{"blank", &datasetLike{RequestedBy: "   "}, "requested_by must not be blank"},
		{"max", &datasetLike{RequestedBy: "lab", UseCase: strings.Repeat("x", 65)}, "use_case must be at most 64"},
		{"account id charset", &accountLike{AccountID: "ACC 1"}, "account_id must be 1-128 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_Passes(t *testing.T) {
	require.NoError(t, Validate(&datasetLike{RequestedBy: "speech-lab", UseCase: "ASR"}))
	require.NoError(t, Validate(&accountLike{AccountID: "0x01cf0e2f2f715450"}))
}

func TestIsAccountID(t *testing.T) {
	assert.True(t, IsAccountID("ACC1"))
	assert.True(t, IsAccountID("user:42.eu-west_1"))
	assert.False(t, IsAccountID(""))
	assert.False(t, IsAccountID("a/b"))
	assert.False(t, IsAccountID(strings.Repeat("a", MaxAccountIDLength+1)))
}
