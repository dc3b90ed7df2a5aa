// Comando classify roda o mesmo validador e classificador do gateway, offline,
// sobre textos ou arquivos de imagem.
//
//	classify text "plastic bottle" "banana peel"
//	classify image --json foto.png
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	jsoniter "github.com/json-iterator/go"

	"ecosort-gateway/classifier"
	"ecosort-gateway/validation"
)

type CLI struct {
	Text  TextCmd  `cmd:"" help:"Classify text descriptions."`
	Image ImageCmd `cmd:"" help:"Classify image files."`
	Tips  TipsCmd  `cmd:"" help:"Print the disposal tip of every category."`

	Keywords string `help:"YAML keyword table replacing the built-in one." type:"existingfile" env:"KEYWORDS_FILE"`
	Seed     uint64 `help:"Seed for the image heuristic (0 = time based)." env:"CLASSIFIER_SEED"`
	JSON     bool   `help:"Print one JSON object per input."`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn" env:"LOG_LEVEL"`

	out io.Writer
}

type TextCmd struct {
	Items []string `arg:"" help:"Text to classify."`
}

type ImageCmd struct {
	Files             []string `arg:"" help:"Image files to classify."`
	MaxFileSizeMB     int      `name:"max-file-size-mb" help:"Largest accepted file." default:"16" env:"MAX_FILE_SIZE_MB"`
	AllowedExtensions []string `name:"allowed-extensions" help:"Accepted file extensions (default png,jpg,jpeg,gif,bmp,webp)." sep:"," env:"ALLOWED_EXTENSIONS"`
}

type TipsCmd struct{}

// line é o que cada entrada produz, em texto ou JSON.
type line struct {
	Input      string              `json:"input"`
	Label      classifier.Category `json:"label,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Tip        string              `json:"tip,omitempty"`
	Size       string              `json:"size,omitempty"`
	Format     string              `json:"format,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (c *CLI) scorer() (*classifier.Scorer, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}))
	opts := []classifier.Option{classifier.WithLogger(logger)}
	if c.Keywords != "" {
		table, err := classifier.LoadKeywords(c.Keywords)
		if err != nil {
			return nil, err
		}
		opts = append(opts, classifier.WithKeywords(table))
	}
	if c.Seed != 0 {
		opts = append(opts, classifier.WithSeed(c.Seed))
	}
	return classifier.NewScorer(opts...), nil
}

func (c *CLI) print(l line) error {
	if c.JSON {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(l)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(b))
		return err
	}

	if l.Error != "" {
		_, err := fmt.Fprintf(c.out, "%s\terror: %s\n", l.Input, l.Error)
		return err
	}
	extra := ""
	if l.Size != "" {
		extra = fmt.Sprintf("\t%s %s", l.Size, l.Format)
	}
	_, err := fmt.Fprintf(c.out, "%s\t%s\t%.2f%s\n", l.Input, l.Label, l.Confidence, extra)
	return err
}

func (t *TextCmd) Run(cli *CLI) error {
	scorer, err := cli.scorer()
	if err != nil {
		return err
	}
	v := validation.New()

	failed := 0
	for _, item := range t.Items {
		l := line{Input: item}
		text, err := v.Text(item)
		if err != nil {
			l.Error = validation.Reason(err)
			failed++
		} else {
			res := scorer.ClassifyText(text)
			l.Label, l.Confidence, l.Tip = res.Category, res.Confidence, classifier.DisposalTip(res.Category)
		}
		if err := cli.print(l); err != nil {
			return err
		}
	}
	return failures(failed)
}

func (i *ImageCmd) Run(cli *CLI) error {
	scorer, err := cli.scorer()
	if err != nil {
		return err
	}
	v := validation.New(i.validatorOptions()...)

	failed := 0
	for _, path := range i.Files {
		l := line{Input: path}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		info, err := v.File(data, filepath.Base(path), int64(len(data)))
		if err != nil {
			l.Error = validation.Reason(err)
			failed++
		} else {
			res := scorer.ClassifyImage(info.Width, info.Height, info.Format)
			l.Label, l.Confidence, l.Tip = res.Category, res.Confidence, classifier.DisposalTip(res.Category)
			l.Size, l.Format = fmt.Sprintf("%dx%d", info.Width, info.Height), info.Format
		}
		if err := cli.print(l); err != nil {
			return err
		}
	}
	return failures(failed)
}

func (i *ImageCmd) validatorOptions() []validation.Option {
	opts := []validation.Option{validation.WithMaxFileSize(int64(i.MaxFileSizeMB) << 20)}
	if len(i.AllowedExtensions) > 0 {
		opts = append(opts, validation.WithAllowedExtensions(i.AllowedExtensions...))
	}
	return opts
}

func (TipsCmd) Run(cli *CLI) error {
	for _, c := range classifier.Categories {
		if _, err := fmt.Fprintf(cli.out, "%s: %s\n", c, classifier.DisposalTip(c)); err != nil {
			return err
		}
	}
	return nil
}

func failures(n int) error {
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%d input(s) rejected", n)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelWarn
	}
	return l
}

func main() {
	cli := CLI{out: os.Stdout}
	ctx := kong.Parse(&cli,
		kong.Name("classify"),
		kong.Description("Classify waste descriptions or images offline."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
