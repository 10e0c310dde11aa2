package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gateline/bridge/internal/bridge/codec"
	"github.com/gateline/bridge/internal/bridge/store"
)

// RegistryExporter writes the active badge registry in the fixed-width
// format the turnstile controller imports.
type RegistryExporter struct {
	registry store.RegistryStore
	codec    codec.Codec
	logger   *log.Logger
}

func NewRegistryExporter(registry store.RegistryStore, c codec.Codec, logger *log.Logger) *RegistryExporter {
	return &RegistryExporter{registry: registry, codec: c, logger: logger}
}

// Export writes every active binding to path, one record per line, and
// returns the number of records written.  The file is replaced atomically
// so the controller never reads a half-written registry.
func (e *RegistryExporter) Export(ctx context.Context, path string) (int, error) {
	bound, err := e.registry.ActiveBindings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active bindings: %w", err)
	}

	sort.Slice(bound, func(i, j int) bool {
		if bound[i].Person.DisplayName != bound[j].Person.DisplayName {
			return bound[i].Person.DisplayName < bound[j].Person.DisplayName
		}
		return bound[i].Badge < bound[j].Badge
	})

	var sb strings.Builder
	count := 0
	for _, b := range bound {
		line, err := e.codec.Encode(b.Badge, b.Person.DisplayName)
		if err != nil {
			e.logger.Printf("export: skipping badge %q: %v", b.Badge, err)
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\r\n")
		count++
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*")
	if err != nil {
		return 0, fmt.Errorf("create temp export file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("replace export file: %w", err)
	}

	return count, nil
}
