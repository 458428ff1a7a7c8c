package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Player 播放一个已落盘的音频文件，播放结束前阻塞
type Player interface {
	Play(ctx context.Context, path string) error
}

// CommandPlayer 调用外部播放器，例如 "afplay" 或 "mpg123 -q"
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer 解析命令行；空命令返回 nil
func NewCommandPlayer(command string) *CommandPlayer {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &CommandPlayer{name: fields[0], args: fields[1:]}
}

// Play 运行播放器直到退出
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string(nil), p.args...), path)
	cmd := exec.CommandContext(ctx, p.name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", p.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
