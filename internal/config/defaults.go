package config

const (
	defaultDraftDir       = "~/.local/share/vidbatch/drafts"
	defaultMaterialsDir   = "~/.local/share/vidbatch/materials"
	defaultLogDir         = "~/.local/share/vidbatch/logs"
	defaultStateDir       = "~/.local/share/vidbatch/state"
	defaultCozeBaseURL    = "https://api.coze.cn/v1"
	defaultRequestTimeout = 30
	defaultPollInterval   = 30
	defaultMaxAttempts    = 20
	defaultFeishuBaseURL  = "https://open.feishu.cn/open-apis"
	defaultMaxWorkers     = 4
	defaultMinFreeGiB     = 2
	defaultKeepHistory    = 50
	defaultPendingStatus  = "视频草稿生成"
	defaultDoneStatus     = "已完成"
	defaultFailedStatus   = "处理失败"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// The remote service reports unrecoverable conditions through free-form
// error text and numeric business codes. The matching lists live in config
// rather than code; message wording is known to drift, so operators can
// extend them without a rebuild.
var (
	defaultFatalKeywords = []string{"timeout", "timed out", "access plugin", "server error"}
	defaultFatalCodes    = []string{"720701001", "720701002"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DraftDir:     defaultDraftDir,
			MaterialsDir: defaultMaterialsDir,
			LogDir:       defaultLogDir,
			StateDir:     defaultStateDir,
		},
		Coze: Coze{
			BaseURL:        defaultCozeBaseURL,
			RequestTimeout: defaultRequestTimeout,
			PollInterval:   defaultPollInterval,
			MaxAttempts:    defaultMaxAttempts,
			FatalKeywords:  append([]string{}, defaultFatalKeywords...),
			FatalCodes:     append([]string{}, defaultFatalCodes...),
		},
		Feishu: Feishu{
			BaseURL:        defaultFeishuBaseURL,
			RequestTimeout: defaultRequestTimeout,
			PendingStatus:  defaultPendingStatus,
			DoneStatus:     defaultDoneStatus,
			FailedStatus:   defaultFailedStatus,
		},
		Batch: Batch{
			MaxWorkers:   defaultMaxWorkers,
			UpdateSource: true,
			MinFreeGiB:   defaultMinFreeGiB,
			KeepHistory:  defaultKeepHistory,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
