package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aligator/gocfb"
	"github.com/spf13/afero"
)

// main is just an example main to play with gocfb.
func main() {
	argsWithoutProg := os.Args[1:]
	if len(argsWithoutProg) <= 0 {
		fmt.Println("Please provide a filename.")
		os.Exit(1)
	}

	docFile, err := os.Open(argsWithoutProg[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	defer docFile.Close()

	doc, err := gocfb.New(docFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf("Opened compound file with root '%v'\n\n", doc.RootName())

	afero.Walk(doc, "", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Println(err)
			return err
		}
		fmt.Println(path, info.IsDir(), info.Size(), info.ModTime())
		return nil
	})

	meta := doc.Metadata()
	fmt.Printf("\nTitle: %q\nAuthor: %q\nApplication: %q\n",
		meta.Title, meta.Author, meta.CreatingApplication)

	streams := doc.ListStreams()
	if len(streams) == 0 {
		return
	}

	file, err := doc.Open(strings.Join(streams[0], "/"))
	if err != nil {
		fmt.Println("could not open the first stream", err)
		os.Exit(1)
	}

	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		fmt.Println("could not stat the stream", err)
		os.Exit(1)
	}

	buffer := make([]byte, 64)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		fmt.Println("could not seek", err)
		os.Exit(1)
	}

	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		fmt.Println("could not read the stream", err)
		os.Exit(1)
	}
	fmt.Printf("\nFirst %d bytes of %s:\n%x\n", n, stat.Name(), buffer[:n])
}
