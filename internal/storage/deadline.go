package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yoockh/clonehub/internal/utils"
)

// UploadWithDeadline races host.Upload against deadline. It always returns
// by the deadline even if the host ignores ctx; a late result is discarded
// and nothing is retried.
func UploadWithDeadline(ctx context.Context, host MediaHost, img Image, folder, quality string, deadline time.Duration) (string, error) {
	const op = "storage.UploadWithDeadline"

	if host == nil {
		return "", utils.E(utils.CodeUpstream, op, "media host is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		url, err := host.Upload(ctx, img, folder, quality)
		done <- result{url: url, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return "", utils.E(utils.CodeTimeout, op, fmt.Sprintf("media host upload timed out after %s", deadline), res.err)
			}
			return "", utils.E(utils.CodeUpstream, op, "media host upload failed", res.err)
		}
		if res.url == "" {
			return "", utils.E(utils.CodeUpstream, op, "media host returned an empty url", nil)
		}
		return res.url, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", utils.E(utils.CodeTimeout, op, fmt.Sprintf("media host upload timed out after %s", deadline), ctx.Err())
		}
		return "", utils.E(utils.CodeUpstream, op, "media host upload cancelled", ctx.Err())
	}
}
