package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/pkg/chunker"
	"github.com/anthanhphan/go-chunk-transfer/pkg/client"
)

const usage = `usage: chunkctl [global flags] <command> [flags] args

commands:
  upload   <path>          split, register, upload missing chunks, finalize
  download <fileId>        fetch, verify and reassemble a file (-o path)
  delete   <fileId>...     delete files
  manifest <path>          print the chunk manifest of a local file

global flags:
`

func main() {
	global := flag.NewFlagSet("chunkctl", flag.ExitOnError)
	gateway := global.String("gateway", envOr("CHUNK_GATEWAY", "http://127.0.0.1:8090"), "gateway base url")
	user := global.String("user", os.Getenv("CHUNK_USER"), "caller identity sent as X-User-ID")
	chunkSize := global.Int64("chunk-size", chunker.DefaultChunkSize, "chunk size in bytes, must match the gateway")
	parallel := global.Int("parallel", 4, "concurrent chunk transfers")
	rounds := global.Int("rounds", 3, "register/fetch rounds before giving up")
	timeout := global.Duration("timeout", 30*time.Minute, "overall deadline")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])
	if global.NArg() < 1 {
		global.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	c, err := client.New(client.Config{
		BaseURL:     *gateway,
		UserID:      *user,
		ChunkSize:   *chunkSize,
		Parallelism: *parallel,
		Rounds:      *rounds,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	cmd, args := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "upload":
		err = runUpload(ctx, c, args)
	case "download":
		err = runDownload(ctx, c, args)
	case "delete":
		err = runDelete(ctx, c, args)
	case "manifest":
		err = runManifest(*chunkSize, args)
	default:
		global.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func runUpload(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	name := fs.String("name", "", "file name (default: base name of path)")
	mime := fs.String("mime", "", "mime type")
	parent := fs.String("parent", "", "parent folder id")
	fileID := fs.String("file-id", "", "resume into an existing file id")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("upload takes exactly one path")
	}

	opts := client.UploadOptions{FileID: *fileID, FileName: *name, MimeType: *mime}
	if *parent != "" {
		opts.ParentID = parent
	}
	started := time.Now()
	res, err := c.Upload(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"fileId":    res.FileID,
		"size":      res.Size,
		"chunks":    res.Chunks,
		"uploaded":  res.Uploaded,
		"reused":    res.Reused,
		"duplicate": res.Duplicate,
		"rounds":    res.Rounds,
		"used":      res.Used,
		"elapsed":   time.Since(started).String(),
	})
}

func runDownload(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	out := fs.String("o", "", "output path (default: the stored file name)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("download takes exactly one file id")
	}
	fileID := fs.Arg(0)

	path := *out
	if path == "" {
		meta, err := c.Meta(ctx, fileID)
		if err != nil {
			return err
		}
		path = meta.File.FileName
	}

	// Write next to the target and rename so a failed download leaves nothing behind.
	tmp := path + ".partial"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304 -- operator-chosen output
	if err != nil {
		return err
	}
	file, err := c.Download(ctx, fileID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Truncate(tmp, file.FileSize)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return printJSON(map[string]any{"fileId": fileID, "path": path, "size": file.FileSize})
}

func runDelete(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete takes at least one file id")
	}
	report, err := c.DeleteFiles(ctx, args)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d node batches failed", len(report.Failed))
	}
	return nil
}

func runManifest(chunkSize int64, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("manifest takes exactly one path")
	}
	m, err := chunker.New(chunkSize).SplitFile(args[0])
	if err != nil {
		return err
	}
	return printJSON(m)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
