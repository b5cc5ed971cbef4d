package storage

import (
	"fmt"
	"os"
	"strings"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/proxypool/model"
)

// ExportValid 将当前可用代理按轮询顺序写入纯文本文件，每行一个。
// The file can be fed back as a proxy list source.
func ExportValid(filePath string, endpoints []model.Endpoint) error {
	var sb strings.Builder
	for _, e := range endpoints {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}

	if err := os.WriteFile(filePath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to export valid proxies: %w", err)
	}

	l := logger.WithComponent("ProxyPool/Storage")
	l.Info().Str("path", filePath).Int("count", len(endpoints)).Msg("Exported valid proxies.")
	return nil
}
