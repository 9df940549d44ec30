package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/abihf/absensi/gallery"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the registered faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logToStderr(conf)
		return listIdentities(gallery.NewStore(conf.GalleryDir, nil))
	},
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}

func listIdentities(store *gallery.Store) error {
	g, err := store.Load()
	if err != nil {
		return err
	}

	if g.Len() == 0 {
		fmt.Printf("No faces registered in %s.\n", store.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tNAME")
	fmt.Fprintln(w, "-\t----")
	for i, name := range g.Names() {
		fmt.Fprintf(w, "%d\t%s\n", i+1, name)
	}
	return w.Flush()
}
