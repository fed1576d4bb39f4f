package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watch re-decodes the configuration whenever the config file changes and
// hands the result to onChange. Decoding or validation failures are logged and
// the previous configuration stays in effect.
func (l *Loader) Watch(onChange func(*Config, fsnotify.Event)) {
	if l.v.ConfigFileUsed() == "" {
		log.Println("[CONFIG] No config file in use, live reload disabled")
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		config, err := l.decode()
		if err != nil {
			log.Printf("[CONFIG] Ignoring config change in %s: %v", e.Name, err)
			return
		}
		if err := config.Validate(); err != nil {
			log.Printf("[CONFIG] Ignoring invalid config change in %s: %v", e.Name, err)
			return
		}

		log.Printf("[CONFIG] Reloaded configuration after %s on %s", e.Op, e.Name)
		onChange(config, e)
	})
	l.v.WatchConfig()
}
