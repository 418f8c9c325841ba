// Command factdiary-inspect opens a database directory and prints the
// value recorded for an (object, ring) pair, or the objects under a ring
// if -ring is given alone. A small manual smoke-test tool, not a
// supported client API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	goccyjson "github.com/goccy/go-json"

	"github.com/rjw-oss/factdiary"
)

type result struct {
	Object string   `json:"object,omitempty"`
	Ring   string   `json:"ring,omitempty"`
	Found  bool     `json:"found"`
	Number uint64   `json:"number,omitempty"`
	Text   string   `json:"text,omitempty"`
	Others []string `json:"objects_with_ring,omitempty"`
}

func main() {
	dir := flag.String("db", "", "database directory")
	object := flag.String("object", "", "object key")
	ring := flag.String("ring", "", "ring key")
	flag.Parse()

	if err := run(*dir, *object, *ring); err != nil {
		fmt.Fprintln(os.Stderr, "factdiary-inspect:", err)
		os.Exit(1)
	}
}

func run(dir, object, ring string) error {
	if dir == "" {
		return fmt.Errorf("-db is required")
	}

	engine, err := factdiary.Open(dir, factdiary.Config{})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	snap, err := engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snap.Close()

	var res result
	switch {
	case object != "" && ring != "":
		res.Object, res.Ring = object, ring
		v, ok, err := snap.ArrowAt([]byte(object), []byte(ring))
		if err != nil {
			return err
		}
		res.Found = ok
		if ok {
			switch v.Kind {
			case factdiary.KindNumber:
				res.Number = v.Num
			case factdiary.KindText:
				res.Text = string(v.Text)
			}
		}
	case ring != "":
		res.Ring = ring
		objects, err := snap.ObjectsWithRing([]byte(ring))
		if err != nil {
			return err
		}
		res.Found = len(objects) > 0
		for _, o := range objects {
			res.Others = append(res.Others, string(o))
		}
	default:
		return fmt.Errorf("at least -ring is required")
	}

	out, err := goccyjson.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
