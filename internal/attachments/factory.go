package attachments

import (
	"context"
	"fmt"

	"github.com/HerbHall/welfaredesk/internal/config"
)

// Open builds the store selected by the "attachments" config section:
// driver, fs_root and the s3 subsection.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch Driver(cfg.GetString("driver")) {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.GetString("fs_root"))
	case DriverS3:
		var s3cfg S3Config
		if err := cfg.Sub("s3").Unmarshal(&s3cfg); err != nil {
			return nil, fmt.Errorf("attachments: decode s3 config: %w", err)
		}
		return NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("attachments: unknown driver %q", cfg.GetString("driver"))
	}
}
