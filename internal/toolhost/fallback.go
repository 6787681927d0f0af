package toolhost

import (
	"context"
	"fmt"
	"os"

	"github.com/artemis/ai-modernizer/internal/apperrors"
)

// localFSCall implements the fs tool server's protocol in-process,
// operating directly on the local filesystem, for use when no fs tool
// server child is running.
func localFSCall(ctx context.Context, method string, params interface{}, result interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	switch method {
	case "read_file":
		p, ok := params.(readFileParams)
		if !ok {
			return apperrors.New(apperrors.KindToolUnavailable, "read_file: unexpected params type")
		}
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return apperrors.Wrap(apperrors.KindToolUnavailable, fmt.Sprintf("read_file %s", p.Path), err)
		}
		if res, ok := result.(*readFileResult); ok {
			res.Content = string(data)
		}
		return nil
	case "write_file":
		p, ok := params.(writeFileParams)
		if !ok {
			return apperrors.New(apperrors.KindToolUnavailable, "write_file: unexpected params type")
		}
		if err := os.WriteFile(p.Path, []byte(p.Content), 0644); err != nil {
			return apperrors.Wrap(apperrors.KindToolUnavailable, fmt.Sprintf("write_file %s", p.Path), err)
		}
		return nil
	default:
		return apperrors.New(apperrors.KindToolUnavailable, "fs fallback: unsupported method "+method)
	}
}
