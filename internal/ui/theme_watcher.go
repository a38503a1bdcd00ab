package ui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS dark mode setting for theme = "system".
type ThemeWatcher struct {
	changeCh  chan bool // true=dark; buffered, latest wins
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the OS cannot be
// watched; callers keep the initial theme.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watchLoop(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			select {
			case tw.changeCh <- isDark:
			default:
				// Replace the unread value with the newer one.
				select {
				case <-tw.changeCh:
				default:
				}
				tw.changeCh <- isDark
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// themeChangedMsg carries a new OS theme into the model.
type themeChangedMsg Theme

// wait returns a command delivering the next change. A nil watcher never
// delivers.
func (tw *ThemeWatcher) wait() tea.Cmd {
	if tw == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case isDark := <-tw.changeCh:
			if isDark {
				return themeChangedMsg(ThemeDark)
			}
			return themeChangedMsg(ThemeLight)
		case <-tw.closeCh:
			return nil
		}
	}
}

// Close stops the watcher goroutine. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	if tw == nil {
		return
	}
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
