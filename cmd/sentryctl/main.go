// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command sentryctl lints a rule file or directory without starting a
// detection engine: every rule is parsed, and (unless -parse-only is
// given) the full signature set is built into a detect.Engine to catch
// cross-signature issues a single-rule parse can't see.
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/sentryd/internal/detect"
	"grimm.is/sentryd/internal/sigparse"
)

func main() {
	rulesPath := flag.String("rules", "", "path to a rule file or directory of *.rules files")
	parseOnly := flag.Bool("parse-only", false, "skip the signature-group build, only parse")
	flag.Parse()

	if *rulesPath == "" {
		os.Stderr.WriteString("sentryctl: -rules is required\n")
		os.Exit(2)
	}

	paths, err := sigparse.ResolveRuleFiles(*rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentryctl: %v\n", err)
		os.Exit(1)
	}

	var sigs []*sigparse.Signature
	failed := 0
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentryctl: %s: %v\n", p, err)
			failed++
			continue
		}
		res, err := sigparse.Load(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentryctl: %s: %v\n", p, err)
			failed++
			continue
		}
		for _, le := range res.Errors {
			fmt.Printf("%s:%d: reject: %v\n", p, le.Line, le.Err)
		}
		failed += len(res.Errors)
		sigs = append(sigs, res.Signatures...)
	}

	fmt.Printf("parsed %d signature(s), %d rejected\n", len(sigs), failed)

	if !*parseOnly {
		eng, err := detect.Build(sigs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentryctl: engine build failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("engine built: %d signature(s) grouped\n", eng.NumSignatures())
	}

	if failed > 0 {
		os.Exit(1)
	}
}
