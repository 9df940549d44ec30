package main

import (
	"fmt"

	"github.com/abihf/absensi"
	"github.com/abihf/absensi/capture"
	"github.com/abihf/absensi/facerec/dlib"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var registerAttempts int

var registerCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a face without starting the terminal",
	Long: `Register captures frames until one contains a face and saves it under
NAME. Use "absensi ctl register" instead while the terminal is running, it
owns the camera.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logToStderr(conf)
		if isAlreadyRun(conf.PidFile) {
			return errors.New("the terminal is running, use \"absensi ctl register\"")
		}

		rec, err := dlib.NewRecognizer(conf.ModelDir, conf.CNN)
		if err != nil {
			return errors.Wrap(err, "Can not initialize face recognizer")
		}
		defer rec.Close()

		session, err := openSession(conf, rec)
		if err != nil {
			return err
		}
		defer session.Close()

		return registerFace(session, args[0], registerAttempts)
	},
}

func init() {
	registerCmd.Flags().IntVarP(&registerAttempts, "attempts", "n", 10, "frames to try before giving up")
	rootCmd.AddCommand(registerCmd)
}

type registerer interface {
	Register(name string) error
}

// registerFace keeps trying frames while there is no usable face in them.
// Any other failure ends it at once.
func registerFace(s registerer, name string, attempts int) error {
	var err error
	for i := 0; i < max(attempts, 1); i++ {
		err = s.Register(name)
		switch {
		case err == nil:
			fmt.Printf("Face registered for %s\n", name)
			return nil
		case errors.Is(err, absensi.ErrNoFace):
			fmt.Println("  - No face detected")
		case errors.Is(err, capture.ErrNoFrame):
			fmt.Println("  - No frame")
		default:
			return err
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", attempts)
}
