package main

import (
	"fmt"
	"os"

	"tingxie/internal/config"

	"github.com/pelletier/go-toml/v2"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	asrDir, vadDir, puncDir := cfg.ModelDirs()
	fmt.Printf("# asr=%s\n# vad=%s\n# punc=%s\n", asrDir, vadDir, puncDir)
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		panic(err)
	}
}
