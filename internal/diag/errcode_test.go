package diag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"burnex/pkg/contract"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "conn reset" }
func (fakeNetErr) Timeout() bool   { return false }
func (fakeNetErr) Temporary() bool { return true }

var _ net.Error = fakeNetErr{}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"cancel", context.Canceled, CodeCancel},
		{"deadline", context.DeadlineExceeded, CodeCancel},
		{"blocked", fmt.Errorf("finish reason SAFETY: %w", contract.ErrBlocked), CodeBlocked},
		{"quota", contract.ErrRateLimited, CodeQuota},
		{"schema", &contract.ValidationError{Paths: []string{"tbsa"}}, CodeSchema},
		{"protocol", fmt.Errorf("decode: %w", contract.ErrResponseInvalid), CodeProtocol},
		{"config", contract.ErrInvalidInput, CodeConfig},
		{"io", &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, CodeIO},
		{"network", fakeNetErr{}, CodeNetwork},
		{"unknown", errors.New("boom"), CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

// 取消优先于其余分类（被包裹的取消不计为网络错误）。
func TestClassifyCancelWins(t *testing.T) {
	err := fmt.Errorf("request aborted: %w", context.Canceled)
	assert.Equal(t, CodeCancel, Classify(err))
}
