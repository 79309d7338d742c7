// Command thmldsa runs local threshold signing benchmarks:
//
//	thmldsa level=44 iter=10 t=2 n=3
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/btc-vision/noble-post-quantum/internal/bench"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 5 {
		fmt.Println("Usage: thmldsa level= iter= t= n=")
		os.Exit(1)
	}

	args := make(map[string]string)
	for _, arg := range os.Args[1:] {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			fmt.Printf("Invalid argument format: %s\n", arg)
			os.Exit(1)
		}
		args[parts[0]] = parts[1]
	}

	cfg := bench.Config{Level: 44, Iter: 1, Threshold: 2, Parties: 3}
	var err error
	if v, ok := args["level"]; ok {
		cfg.Level, err = strconv.Atoi(v)
	}
	if v, ok := args["iter"]; ok && err == nil {
		cfg.Iter, err = strconv.Atoi(v)
	}
	if v, ok := args["t"]; ok && err == nil {
		cfg.Threshold, err = strconv.Atoi(v)
	}
	if v, ok := args["n"]; ok && err == nil {
		cfg.Parties, err = strconv.Atoi(v)
	}
	if err != nil {
		fmt.Println("Error: please enter valid integers for params.")
		os.Exit(1)
	}
	if cfg.Parties > 6 {
		fmt.Println("Only maximum 6 parties are allowed")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := bench.Run(logger.Sugar(), cfg); err != nil {
		logger.Sugar().Fatalw("benchmark failed", "err", err)
	}
}
