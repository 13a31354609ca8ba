package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-scraper/internal/venue"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

var conferencesCmd = &cobra.Command{
	Use:   "conferences",
	Short: "List supported conferences, their sources, and years",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONFERENCE\tSOURCE\tYEARS\tNOTES")
		for _, e := range venue.Default().Conferences() {
			var notes []string
			if e.Kind.RequiresCredentials() {
				notes = append(notes, "needs OpenReview credentials")
			}
			if e.Kind == types.SourcePDF {
				notes = append(notes, "needs --pdf-dir")
			}
			if e.PosterOnly {
				notes = append(notes, "poster-only")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Kind, yearSpan(e.SupportedYears()), strings.Join(notes, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(conferencesCmd)
}

// yearSpan renders ascending years compactly, e.g. "2017-2026" or
// "2019, 2021-2022".
func yearSpan(years []int) string {
	var parts []string
	for i := 0; i < len(years); {
		j := i
		for j+1 < len(years) && years[j+1] == years[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, fmt.Sprint(years[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", years[i], years[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
