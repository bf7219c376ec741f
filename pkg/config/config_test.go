package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[memory]
max_recent_turns = 10
compaction = "deferred"

[summarizer]
provider = "anthropic"
timeout = "3s"

[store]
backend = "sqlite"
sqlite_path = "/tmp/recall.db"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Memory.MaxRecentTurns).To(Equal(10))
			Expect(cfg.Memory.Compaction).To(Equal("deferred"))
			Expect(cfg.Summarizer.Provider).To(Equal("anthropic"))
			Expect(cfg.Summarizer.Timeout).To(Equal("3s"))
			Expect(cfg.Store.Backend).To(Equal("sqlite"))
			Expect(cfg.Store.SQLitePath).To(Equal("/tmp/recall.db"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `[memory]
max_total_tokens = 4000
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Memory.MaxTotalTokens).To(Equal(4000))
			Expect(cfg.Memory.MaxRecentTurns).To(Equal(defaults.Memory.MaxRecentTurns))
			Expect(cfg.Store.TTL).To(Equal(defaults.Store.TTL))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Events.Provider).To(Equal(defaults.Events.Provider))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not = [valid"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 99\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 99"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Events.Provider = "kafka"
			cfg.Events.Brokers = "localhost:9092"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("[events]"))
			Expect(string(data)).To(ContainSubstring(`brokers = "localhost:9092"`))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("round trips every field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.PresetConfig("ollama")
			Expect(err).NotTo(HaveOccurred())
			cfg.Store.Backend = "postgres"
			cfg.Store.PostgresDSN = "postgres://localhost/recall"
			cfg.Memory.Compaction = "deferred"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("api.listen", ":9999")).To(Succeed())
			val, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(":9999"))
		})

		It("sets an int config key", func() {
			Expect(c.SetConfigValue("memory.max_recent_turns", "12")).To(Succeed())
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Memory.MaxRecentTurns).To(Equal(12))
		})

		It("rejects invalid numbers", func() {
			Expect(c.SetConfigValue("memory.max_total_tokens", "lots")).To(HaveOccurred())
			Expect(c.SetConfigValue("memory.max_total_tokens", "-1")).To(HaveOccurred())
			Expect(c.SetConfigValue("memory.workers", "-1")).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			err := c.SetConfigValue("store.ttl", "a day")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("store.ttl"))
			Expect(c.SetConfigValue("store.ttl", "48h")).To(Succeed())
		})

		It("rejects values outside the allowed set", func() {
			Expect(c.SetConfigValue("store.backend", "redis")).To(HaveOccurred())
			Expect(c.SetConfigValue("memory.compaction", "lazy")).To(HaveOccurred())
			Expect(c.SetConfigValue("summarizer.provider", "")).To(Succeed())
		})

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("proxy.upstream", "x")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("events.topic", "sessions")).To(Succeed())
			Expect(c.SetConfigValue("events.provider", "kafka")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Events.Topic).To(Equal("sessions"))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("memory.max_total_tokens")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("2000"))

			val, err = c.GetConfigValue("summarizer.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})
	})

	Describe("Settings", func() {
		It("lists every key with its loaded value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("store.backend", "postgres")).To(Succeed())

			settings, err := c.Settings()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(HaveLen(len(config.ValidConfigKeys())))
			Expect(settings[0].Key).To(Equal("memory.max_recent_turns"))
			Expect(settings).To(ContainElement(config.Setting{Key: "store.backend", Value: "postgres"}))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("memory.max_recent_turns"))
		Expect(keys).To(ContainElements("store.backend", "summarizer.timeout", "events.brokers", "client.api_target"))
		Expect(keys).To(Equal(config.ValidConfigKeys()))
	})

	It("validates key names", func() {
		Expect(config.IsValidConfigKey("store.ttl")).To(BeTrue())
		Expect(config.IsValidConfigKey("ttl")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("configures the summarizer for each preset", func() {
		for _, name := range config.ValidPresetNames() {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Summarizer.Provider).To(Equal(name))
			Expect(cfg.Summarizer.Model).NotTo(BeEmpty())
		}
	})

	It("is case-insensitive", func() {
		cfg, err := config.PresetConfig("OpenAI")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Summarizer.Provider).To(Equal("openai"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("mistral")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[store]
backend = "sqlite"
ttl = "1h"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Store.Backend).To(Equal("sqlite"))
		Expect(cfg.Store.TTL).To(Equal("1h"))
		Expect(cfg.Store.Prefix).To(Equal(config.NewDefaultConfig().Store.Prefix))
	})

	It("env vars take precedence over config file values", func() {
		data := `[memory]
max_recent_turns = 8
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("RECALL_MEMORY_MAX_RECENT_TURNS", "4")
		GinkgoT().Setenv("RECALL_SUMMARIZER_PROVIDER", "ollama")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Memory.MaxRecentTurns).To(Equal(4))
		Expect(cfg.Summarizer.Provider).To(Equal("ollama"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		var turns uint
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		config.AddUintFlag(cmd, config.Flags, config.FlagMaxRecentTurns, &turns)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		Expect(cmd.Flags().Set("max-recent-turns", "9")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen, config.FlagMaxRecentTurns})

		cfg := config.FromViper(v)
		Expect(cfg.API.Listen).To(Equal(":7777"))
		Expect(cfg.Memory.MaxRecentTurns).To(Equal(9))
	})

	It("falls through to config when flag not set", func() {
		data := `[api]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal("Recall API server URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})

	It("AddUintFlag defaults from the config defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		var tokens uint
		config.AddUintFlag(cmd, config.Flags, config.FlagMaxTotalTokens, &tokens)

		f := cmd.Flags().Lookup("max-total-tokens")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("2000"))
	})
})
