package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"neurofmt/pkg/annot"
	"neurofmt/pkg/config"
	"neurofmt/pkg/curv"
	"neurofmt/pkg/label"
	"neurofmt/pkg/mgh"
	"neurofmt/pkg/surface"
)

func main() {
	// Parse command line arguments
	format := flag.String("format", "", "File format: surf, curv, label, annot or mgh (default: guess from filename)")
	configPath := flag.String("config", "neurofmt.yaml", "Path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "Print per-element details in addition to the summary")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <file>...\n", filepath.Base(os.Args[0]))
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	for _, path := range flag.Args() {
		kind := *format
		if kind == "" {
			kind = guessFormat(path)
		}
		if kind == "" {
			log.Fatalf("Cannot guess format of %s, pass -format", path)
		}
		if err := describe(kind, path, cfg); err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
	}
}

// guessFormat maps conventional FreeSurfer file naming to a format name.
func guessFormat(path string) string {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ".mgh"), strings.HasSuffix(name, ".mgz"):
		return "mgh"
	case strings.HasSuffix(name, ".label"):
		return "label"
	case strings.HasSuffix(name, ".annot"):
		return "annot"
	case strings.HasSuffix(name, ".white"), strings.HasSuffix(name, ".pial"),
		strings.HasSuffix(name, ".inflated"), strings.HasSuffix(name, ".sphere"):
		return "surf"
	case strings.HasSuffix(name, ".thickness"), strings.HasSuffix(name, ".curv"),
		strings.HasSuffix(name, ".sulc"), strings.HasSuffix(name, ".area"):
		return "curv"
	}
	return ""
}

func describe(kind, path string, cfg *config.Config) error {
	fmt.Printf("==== %s (%s) ====\n", path, kind)
	d := cfg.Output.FloatDigits

	switch kind {
	case "surf":
		mesh, err := surface.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Comment: %s\n", mesh.Comment)
		fmt.Printf("Vertices: %d, faces: %d\n", mesh.NumVertices(), mesh.NumFaces())
		if cfg.Output.Verbose && mesh.NumVertices() > 0 {
			fmt.Printf("First vertex: (%.*f, %.*f, %.*f)\n",
				d, mesh.Vertices[0], d, mesh.Vertices[1], d, mesh.Vertices[2])
		}

	case "curv":
		c, err := curv.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Vertices: %d, faces: %d\n", c.NumVertices, c.NumFaces)
		if len(c.Values) > 0 {
			min, max, mean := summarize(c.Values)
			fmt.Printf("Values: min %.*f, max %.*f, mean %.*f\n", d, min, d, max, d, mean)
		}

	case "label":
		l, err := label.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Comment: %s\n", l.Comment)
		fmt.Printf("Labeled vertices: %d\n", len(l.Entries))

	case "annot":
		a, err := annot.ReadFile(path)
		if err != nil {
			// A duplicate annotation code is an inconsistency warning,
			// not a failure: the parcellation is still reported.
			if a == nil {
				return err
			}
			log.Printf("Warning: %v", err)
		}
		fmt.Printf("Vertices: %d\n", len(a.VertexCodes))
		regions := a.Regions()
		fmt.Printf("Regions: %d\n", len(regions))
		if cfg.Output.Verbose {
			for _, name := range regions {
				verts, err := a.RegionVertices(name)
				if err != nil {
					return err
				}
				fmt.Printf("  %-24s %d vertices\n", name, len(verts))
			}
		}

	case "mgh":
		v, err := mgh.ReadFile(path)
		if err != nil {
			return err
		}
		h := v.Header
		fmt.Printf("Dimensions: %d x %d x %d, %d frame(s)\n", h.Width, h.Height, h.Depth, h.NumFrames)
		fmt.Printf("Data type: %s, goodRASFlag: %v\n", h.DataType, h.GoodRAS)
		if v.Footer != nil {
			fmt.Printf("TR: %.*f ms, TE: %.*f ms, TI: %.*f ms\n",
				d, v.Footer.TR, d, v.Footer.TE, d, v.Footer.TI)
		}
		if cfg.Output.Verbose {
			m := h.Vox2Ras()
			fmt.Println("vox2ras:")
			for i := 0; i < 4; i++ {
				fmt.Printf("  [%.*f %.*f %.*f %.*f]\n",
					d, m.At(i, 0), d, m.At(i, 1), d, m.At(i, 2), d, m.At(i, 3))
			}
		}

	default:
		return fmt.Errorf("unknown format %q", kind)
	}
	return nil
}

func summarize(values []float32) (min, max, mean float64) {
	min = float64(values[0])
	max = float64(values[0])
	sum := 0.0
	for _, v := range values {
		f := float64(v)
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
		sum += f
	}
	return min, max, sum / float64(len(values))
}
