package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chanlun/internal/config"
)

// ErrExists 目标文件已存在且未要求覆盖。
var ErrExists = errors.New("配置文件已存在")

// Writer 负责原子写入配置文件，覆盖前保留备份。
type Writer struct {
	path string
	keep int
	mu   sync.Mutex
}

func New(path string) *Writer {
	return &Writer{path: path, keep: 10}
}

func (w *Writer) Path() string { return w.path }

// Write 按扩展名编码 cfg，写入临时文件后 rename。
func (w *Writer) Write(cfg config.Config, overwrite bool) error {
	format, err := config.FormatOf(w.path)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, format)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(w.path); err == nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrExists, w.path)
		}
		if err := w.backup(); err != nil {
			return fmt.Errorf("备份失败: %w", err)
		}
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}

func (w *Writer) backup() error {
	src, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dir := filepath.Join(filepath.Dir(w.path), "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	dst, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, time.Now().Format("20060102_150405.000"), ext)))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	w.prune(dir, name+"_", ext)
	return nil
}

// prune 只保留最近 keep 份备份。
func (w *Writer) prune(dir, prefix, ext string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= w.keep {
		return
	}
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-w.keep] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
