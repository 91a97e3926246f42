// Command meshinfo parses model and texture files on the host and prints
// what meshview would upload for each of them.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/meshes/model"
	"github.com/vkngwrapper/meshes/texture"
	"golang.org/x/sync/errgroup"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

type summary struct {
	Path string

	Vertices int
	Indices  int
	Min, Max [3]float32

	Width, Height, Channels int
}

func (s summary) String() string {
	if s.Width > 0 {
		return fmt.Sprintf("%s: texture %dx%d, %d channels, %d bytes", s.Path, s.Width, s.Height, s.Channels, s.Width*s.Height*4)
	}
	return fmt.Sprintf("%s: %d vertices, %d indices, bounds %v - %v", s.Path, s.Vertices, s.Indices, s.Min, s.Max)
}

func summarize(decoder texture.Decoder, path string) (summary, error) {
	s := summary{Path: path}

	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		raw, err := decoder.Decode(path)
		if err != nil {
			return s, err
		}
		defer raw.Release()

		s.Width, s.Height, s.Channels = raw.Width, raw.Height, raw.Channels
		return s, nil
	}

	geometry, err := model.Load(path)
	if err != nil {
		return s, err
	}

	s.Vertices = len(geometry.Vertices)
	s.Indices = len(geometry.Indices)
	lo, hi := geometry.Bounds()
	s.Min, s.Max = lo, hi
	return s, nil
}

func summarizeAll(ctx context.Context, decoder texture.Decoder, paths []string) ([]summary, error) {
	results := make([]summary, len(paths))
	group, ctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		idx, path := i, path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			s, err := summarize(decoder, path)
			if err != nil {
				return errors.Wrapf(err, "summarizing %s", path)
			}
			results[idx] = s
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: meshinfo <model.obj|texture.png>...")
		os.Exit(1)
	}

	start := hrtime.Now()
	results, err := summarizeAll(context.Background(), texture.FileDecoder{}, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	for _, s := range results {
		fmt.Println(s)
	}
	log.Printf("summarized %d files in %s", len(results), hrtime.Since(start))
}
