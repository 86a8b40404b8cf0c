package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdpick/mdpick/internal/config"
	"github.com/mdpick/mdpick/internal/counter"
	"github.com/mdpick/mdpick/internal/filter"
	"github.com/mdpick/mdpick/internal/logging"
	"github.com/mdpick/mdpick/internal/session"
	"github.com/mdpick/mdpick/internal/tree"
)

var selectPaths []string
var extList string
var noExtFilter bool
var excludePatterns []string
var includeGitIgnore bool
var workers int
var model string
var toFile bool
var fileName string
var printFlag bool
var copyFlag bool
var sshCopyFlag bool
var setDefaultOutput string
var showTree bool
var profileName string
var verbose bool
var unsafe bool

var rootCmd = &cobra.Command{
	Use:   "mdpick [directory]",
	Short: "Mdpick combines selected files from a directory into one markdown document",
	Long: `Mdpick walks a directory tree, selects files under filtering rules,
counts tokens for every selected text file, and synthesizes a single
hierarchy-preserving markdown document annotated with per-file and
total token counts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		logger, err := logging.Setup(verbose)
		if err != nil {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		if setDefaultOutput != "" {
			mode, ok := normalizeOutputMode(setDefaultOutput)
			if !ok {
				return fmt.Errorf("invalid output mode %q (expected print, copy, or ssh-copy)", setDefaultOutput)
			}
			return config.WriteDefaultOutput(mode)
		}

		cfg, err := config.LoadLayered(dir, profileName)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlags(&cfg)

		mode, err := resolveOutputMode(cfg.Output, printFlag, copyFlag, sshCopyFlag)
		if err != nil {
			return err
		}

		policy, err := filter.New(dir, filter.Config{
			Extensions:         cfg.Extensions,
			ExtensionFiltering: cfg.ExtensionFilteringEnabled(),
			ExcludePatterns:    cfg.Exclude,
			UseGitignore:       !includeGitIgnore,
		})
		if err != nil {
			return fmt.Errorf("failed to create filter policy: %w", err)
		}

		tok, err := counter.NewTiktokenTokenizer(cfg.Model)
		if err != nil {
			return err
		}

		sess, err := session.Open(dir, policy, tok, session.Options{
			Workers: cfg.Workers,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to load directory structure: %w", err)
		}
		defer sess.Close()

		if err := applySelection(sess, dir); err != nil {
			return err
		}

		gen := sess.Recount()
		agg, final := sess.AwaitAggregate(gen)
		if !final {
			logger.Warn("token counting did not complete; document may carry pending markers")
		}

		if showTree {
			printSelectionTree(os.Stdout, sess.Root, agg)
			return nil
		}

		doc := sess.Render()
		fmt.Fprintf(os.Stderr, "files: %d  errors: %d  tokens: %d\n",
			agg.Files, agg.Errors, agg.Tokens)

		if toFile {
			return writeOutputFile(fileName, doc)
		}
		return emitOutput(os.Stdout, mode, doc)
	},
}

// applyFlags folds command-line flags over the file configuration.
func applyFlags(cfg *config.Settings) {
	if extList != "" {
		cfg.Extensions = splitList(extList)
		on := true
		cfg.ExtensionFiltering = &on
	}
	if noExtFilter {
		off := false
		cfg.ExtensionFiltering = &off
	}
	if len(excludePatterns) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludePatterns...)
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = filter.DefaultExcludePatterns
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if model != "" {
		cfg.Model = model
	}
}

// applySelection checks the requested paths, or everything selectable
// when none were given.
func applySelection(sess *session.Session, dir string) error {
	if len(selectPaths) == 0 {
		tree.Toggle(sess.Root)
		return nil
	}
	for _, p := range selectPaths {
		abs := p
		if !filepath.IsAbs(p) {
			abs = filepath.Join(sess.Root.Path, p)
		}
		node := sess.Root.Find(abs)
		if node == nil {
			return fmt.Errorf("no such path under %s: %s", dir, p)
		}
		if node.Selection == tree.Excluded {
			return fmt.Errorf("path is excluded by the filter policy: %s", p)
		}
		if node.Selection != tree.Checked {
			tree.Toggle(node)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// writeOutputFile refuses to clobber a file that does not look like
// mdpick output, unless --unsafe is set.
func writeOutputFile(path string, doc string) error {
	if _, err := os.Stat(path); err == nil && !unsafe {
		generated, err := isGeneratedOutput(path)
		if err != nil {
			return fmt.Errorf("failed to check existing file: %w", err)
		}
		if !generated {
			return fmt.Errorf("refusing to overwrite %s: file exists and doesn't appear to be mdpick output. Use --unsafe to override", path)
		}
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	fmt.Printf("Output written to: %s\n", path)
	return nil
}

func isGeneratedOutput(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(string(content), "# Repository Structure\n") &&
		strings.Contains(string(content), "\nTotal tokens: "), nil
}

func init() {
	rootCmd.Flags().StringArrayVarP(&selectPaths, "select", "s", nil, "Path (relative to the directory) to select; repeatable. Default: everything selectable")
	rootCmd.Flags().StringVarP(&extList, "ext", "e", "", "Comma-separated extension allowlist (enables extension filtering)")
	rootCmd.Flags().BoolVar(&noExtFilter, "no-ext-filter", false, "Disable extension filtering entirely")
	rootCmd.Flags().StringArrayVarP(&excludePatterns, "exclude", "x", nil, "Extra exclude pattern (segment or glob); repeatable")
	rootCmd.Flags().BoolVarP(&includeGitIgnore, "include-gitignore", "i", false, "Include files that would normally be ignored by .gitignore")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Token counting worker count (default: number of CPUs)")
	rootCmd.Flags().StringVarP(&model, "model", "m", "", "Tokenizer model name (default gpt-3.5-turbo / cl100k_base)")
	rootCmd.Flags().BoolVarP(&toFile, "to-file", "f", false, "Write output to file instead of stdout")
	rootCmd.Flags().StringVarP(&fileName, "file-name", "n", "./picked.md", "Output file name (only used with --to-file)")
	rootCmd.Flags().BoolVar(&printFlag, "print", false, "Print the document to stdout")
	rootCmd.Flags().BoolVar(&copyFlag, "copy", false, "Copy the document to the system clipboard")
	rootCmd.Flags().BoolVar(&sshCopyFlag, "ssh-copy", false, "Copy the document via OSC 52 (for SSH sessions)")
	rootCmd.Flags().StringVar(&setDefaultOutput, "set-default-output", "", "Persist a default output mode (print, copy, or ssh-copy) and exit")
	rootCmd.Flags().BoolVarP(&showTree, "tree", "t", false, "Print the selection tree with per-file token counts instead of the document")
	rootCmd.Flags().StringVarP(&profileName, "profile", "p", "", "Config profile name from .mdpick")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&unsafe, "unsafe", false, "Allow overwriting non-mdpick output files")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
