package fontcustom

import (
	"context"
	"fmt"
	"strings"

	"iconfont/pkg/pipeline"
	"iconfont/pkg/vfs"

	"go.uber.org/zap"
	"golang.org/x/image/font/sfnt"
)

// VerifierName tags errors raised by the Verifier stage.
const VerifierName = "iconfont-verify"

// Verifier is a pass-through stage that parses generated TrueType and
// OpenType fonts and reports the ones that do not parse.
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger.With(zap.String("plugin", VerifierName))}
}

func (v *Verifier) Transform(_ context.Context, f *vfs.File, out pipeline.Emitter) error {
	if f.IsBuffer() {
		switch strings.ToLower(f.Extname()) {
		case ".ttf", ".otf":
			if err := v.check(f); err != nil {
				out.Error(pipeline.NewPluginError(VerifierName, err))
			}
		}
	}
	return out.Push(f)
}

func (v *Verifier) Flush(context.Context, pipeline.Emitter) error { return nil }

func (v *Verifier) check(f *vfs.File) error {
	font, err := sfnt.Parse(f.Contents)
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.Path, err)
	}
	family, err := font.Name(nil, sfnt.NameIDFamily)
	if err != nil {
		v.logger.Debug("Font has no family name", zap.String("file", f.Path), zap.Error(err))
		family = ""
	}
	v.logger.Debug("Verified font",
		zap.String("file", f.Path),
		zap.String("family", family),
		zap.Int("glyphs", font.NumGlyphs()))
	return nil
}
