package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vidbatch/internal/config"
	"vidbatch/internal/services/feishu"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least
// minFreeGiB gibibytes available. Generated materials and drafts can be
// large, so running out mid-batch wastes every in-flight synthesis.
func CheckFreeSpace(name, path string, minFreeGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeBytes := stat.Bavail * uint64(stat.Bsize)
	freeGiB := float64(freeBytes) / (1 << 30)
	if freeGiB < float64(minFreeGiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%.1f GiB free, need %d GiB", freeGiB, minFreeGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB free", freeGiB)}
}

// CheckCozeConfig verifies the workflow API settings are present. The
// check is offline: a submit call costs a real workflow run, so
// reachability is only discovered on the first item.
func CheckCozeConfig(cfg config.Coze) Result {
	const name = "Coze workflow"
	if strings.TrimSpace(cfg.Token) == "" {
		return Result{Name: name, Detail: "api token missing"}
	}
	if strings.TrimSpace(cfg.WorkflowID) == "" {
		return Result{Name: name, Detail: "workflow id missing"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("workflow %s configured", cfg.WorkflowID)}
}

// CheckFeishu verifies the bitable credentials by fetching a tenant token.
// It uses a 10-second timeout and a single attempt.
func CheckFeishu(ctx context.Context, cfg config.Feishu) Result {
	const name = "Feishu bitable"
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return Result{Name: name, Detail: "app credentials missing"}
	}
	if strings.TrimSpace(cfg.ContentTable.TableID) == "" {
		return Result{Name: name, Detail: "content table id missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := feishu.NewClient(feishu.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		AppToken:  cfg.AppToken,
		BaseURL:   cfg.BaseURL,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
