// Command objcdump is a non-signal-path, offline driver for objcscan: it
// loads a Mach-O image from disk and resolves a single instruction
// pointer through FindMethod, logging structured diagnostics as it goes.
// It exists to exercise the library somewhere logging and error-text are
// allowed, the way blacktop/ipsw's inspection commands sit outside the
// batch-symbolication hot path.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/crashlens/objcscan"
	"github.com/crashlens/objcscan/internal/machofile"
)

func main() {
	log.SetHandler(clihandler.Default)

	var imagePath string
	var addrFlag string

	root := &cobra.Command{
		Use:           "objcdump",
		Short:         "Resolve a Mach-O image's Objective-C metadata at a crash address",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath == "" {
				return fmt.Errorf("--image is required")
			}

			img, f, err := machofile.Load(imagePath)
			if err != nil {
				return fmt.Errorf("load %s: %w", imagePath, err)
			}
			defer f.Close()

			log.WithFields(log.Fields{
				"image": imagePath,
				"is64":  img.Is64,
				"arch":  img.Arch,
			}).Info("loaded image")

			if addrFlag == "" {
				log.Info("no --addr given; image loaded and ready, nothing to resolve")
				return nil
			}
			addr, err := parseHexAddr(addrFlag)
			if err != nil {
				return err
			}

			cache := objcscan.NewCache()
			defer cache.Close()

			found := false
			err = objcscan.FindMethod(img, cache, addr, func(isMeta bool, className, methodName string, imp uint64) {
				found = true
				sign := "-"
				if isMeta {
					sign = "+"
				}
				log.WithFields(log.Fields{"imp": fmt.Sprintf("%#x", imp)}).Infof("%s[%s %s]", sign, className, methodName)
			})
			if err != nil {
				return fmt.Errorf("find method at %#x: %w", addr, err)
			}
			if !found {
				log.Warnf("no method found containing %#x", addr)
			}
			return nil
		},
	}

	root.Flags().StringVar(&imagePath, "image", "", "path to a Mach-O image file")
	root.Flags().StringVar(&addrFlag, "addr", "", "hex instruction pointer to resolve (e.g. 0x1000)")

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("objcdump failed")
		os.Exit(1)
	}
}

func parseHexAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("--addr %q is not a hex address: %w", s, err)
	}
	return v, nil
}
