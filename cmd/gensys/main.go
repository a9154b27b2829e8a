package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/gensys/internal/config"
	"github.com/l1jgo/gensys/internal/core/event"
	"github.com/l1jgo/gensys/internal/gensys"
	"github.com/l1jgo/gensys/internal/schema"
	"github.com/l1jgo/gensys/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(session string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               gensys  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m    components · archetypes · genres       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1msession:\033[0m %s\n\n", session)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/gensys.toml"
	if p := os.Getenv("GENSYS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.Profile.Enabled {
		defer profile.Start(profileMode(cfg.Profile.Mode), profile.ProfilePath(cfg.Profile.Path), profile.NoShutdownHook).Stop()
	}

	// 3. Open a session
	sess := gensys.NewSession(log, cfg.Gensys.EntityCapacity)
	sess.Initialize()
	defer sess.Cleanup()
	printBanner(sess.ID())

	engine := scripting.NewEngine(sess, log)
	defer engine.Close()

	// 4. Stage schema files, then script definitions
	printSection("schema")
	st, err := schema.LoadDir(cfg.Gensys.SchemaDir, sess, log)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	printStat("components", st.Components)
	printStat("archetypes", st.Archetypes)
	printStat("genres", st.Genres)
	if st.Skipped > 0 {
		printStat("skipped", st.Skipped)
	}

	printSection("scripts")
	n, err := engine.LoadDir(cfg.Gensys.ScriptsDir)
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}
	printStat("files", n)
	ss := engine.StageAll()
	printStat("components", ss.Components)
	printStat("archetypes", ss.Archetypes)
	printStat("genres", ss.Genres)
	if ss.Skipped > 0 {
		printStat("skipped", ss.Skipped)
	}

	c, a, g := sess.Staged()
	printOK(fmt.Sprintf("staged %d components, %d archetypes, %d genres", c, a, g))

	// 5. Compile and let scripts populate the world
	var compiled event.Compiled
	event.Subscribe(sess.Bus(), func(e event.Compiled) { compiled = e })
	sess.Compile()
	printOK(fmt.Sprintf("compiled %d components, %d archetypes, %d genres",
		len(sess.Tables().Comps), len(sess.Tables().Arches), len(sess.Tables().Genres)))
	if err := engine.DoString(`if type(on_ready) == "function" then on_ready() end`); err != nil {
		return fmt.Errorf("on_ready: %w", err)
	}

	// 6. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Gensys.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("tick loop (tick: %s, entities: %d)", cfg.Gensys.TickRate, sess.World().Len()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			sess.Tick(cfg.Gensys.TickRate)
			if cfg.Gensys.Ticks > 0 && sess.Ticks() >= uint64(cfg.Gensys.Ticks) {
				log.Info("tick limit reached",
					zap.Uint64("ticks", sess.Ticks()),
					zap.Int("entities", sess.World().Len()),
					zap.Int("compiled_archetypes", compiled.Archetypes))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()), zap.Uint64("ticks", sess.Ticks()))
			return nil
		}
	}
}

func profileMode(mode string) func(*profile.Profile) {
	switch mode {
	case "mem":
		return profile.MemProfile
	case "allocs":
		return profile.MemProfileAllocs
	}
	return profile.CPUProfile
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
