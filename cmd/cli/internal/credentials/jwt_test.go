package credentials

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestEmployeeID(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    string
		wantErr error
	}{
		{
			name:   "camel case claim",
			claims: jwt.MapClaims{"employeeId": "emp-1", "sub": "user-1"},
			want:   "emp-1",
		},
		{
			name:   "snake case claim",
			claims: jwt.MapClaims{"employee_id": "emp-2"},
			want:   "emp-2",
		},
		{
			name:   "numeric claim",
			claims: jwt.MapClaims{"employeeId": 42},
			want:   "42",
		},
		{
			name:   "subject fallback",
			claims: jwt.MapClaims{"sub": "user-1"},
			want:   "user-1",
		},
		{
			name:    "no claim",
			claims:  jwt.MapClaims{"iss": "hr"},
			wantErr: ErrNoEmployeeClaim,
		},
		{
			name:    "expired",
			claims:  jwt.MapClaims{"employeeId": "emp-1", "exp": now.Add(-time.Minute).Unix()},
			wantErr: ErrTokenExpired,
		},
		{
			name:   "not yet expired",
			claims: jwt.MapClaims{"employeeId": "emp-1", "exp": now.Add(time.Hour).Unix()},
			want:   "emp-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EmployeeID(sign(t, tt.claims), now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmployeeID_BearerPrefix(t *testing.T) {
	got, err := EmployeeID("Bearer "+sign(t, jwt.MapClaims{"employeeId": "emp-1"}), now)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", got)
}

func TestEmployeeID_Malformed(t *testing.T) {
	_, err := EmployeeID("not-a-token", now)
	require.Error(t, err)
}
