package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/osusume/data/model.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/osusume/data/books.csv"
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 5
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 50
	}
	if cfg.Recommend.MinSimilarity == 0 {
		cfg.Recommend.MinSimilarity = 0.1
	}
}
