package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"captiond/internal/captioner"
	"captiond/internal/imaging"
	"captiond/pkg/types"
)

func runCaptionCmd(cmd *cobra.Command, fv *flagValues, path string) error {
	cfg, err := resolveConfig(cmd, fv, nil)
	if err != nil {
		return err
	}
	captioner.SetLogger(newLogger(os.Stderr, cfg.LogLevel))

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, _, err := imaging.Decode(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ccfg, err := captionerConfig(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	capt, err := captioner.Open(ctx, ccfg)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer capt.Close()

	res, err := capt.Caption(ctx, img)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(types.CaptionResponse{Model: res.ModelID, Caption: res.Caption, LatencyMS: res.LatencyMS()})
}
