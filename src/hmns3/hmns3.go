/*
Package hmns3 is a tiny stand-in for S3 that stores objects as plain files, so
the media mirror can be developed without a real bucket. Point
RECAP_MEDIA_ENDPOINT at it.

Only what the mirror uses is implemented: creating a bucket, putting an
object, and getting it back.
*/
package hmns3

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcadamson/recap.agdg.app/src/cli"
	"github.com/tcadamson/recap.agdg.app/src/jobs"
	"github.com/tcadamson/recap.agdg.app/src/logging"
)

func init() {
	var addr string
	s3Command := &cobra.Command{
		Use:   "s3local [storage folder]",
		Short: "Run a local S3 server that stores in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp/s3"
			if len(args) > 0 {
				targetFolder = args[0]
			}

			job := StartServer(addr, targetFolder)
			cli.WaitForInterrupt(jobs.Jobs{job})
		},
	}
	s3Command.Flags().StringVar(&addr, "addr", "localhost:9000", "address to listen on")

	cli.RootCommand.AddCommand(s3Command)
}

// StartServer serves a Server until the job is canceled.
func StartServer(addr, dir string) *jobs.Job {
	job := jobs.New("local s3 server")

	server := &http.Server{
		Addr:    addr,
		Handler: NewServer(dir),
	}
	go func() {
		defer job.Finish()
		job.Logger.Info().Str("addr", addr).Str("dir", dir).Msg("serving local s3")
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			job.Logger.Error().Err(err).Msg("local s3 server shut down unexpectedly")
		}
	}()
	go func() {
		<-job.Canceled()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return job
}

type Server struct {
	Dir string
}

func NewServer(dir string) *Server {
	return &Server{Dir: dir}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key := bucketKey(r)
	logger := logging.Debug().Str("method", r.Method).Str("bucket", bucket).Str("key", key)

	if bucket == "" || strings.Contains(bucket, "..") || strings.Contains(key, "..") {
		logger.Msg("bad s3 request")
		writeError(w, http.StatusBadRequest, "InvalidRequest", "bad bucket or key")
		return
	}
	bucketDir := filepath.Join(s.Dir, bucket)

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		logger.Int("len(body)", len(body)).Msg("s3 put")

		if key == "" {
			if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
				writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
				return
			}
			w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
			return
		}

		if _, err := os.Stat(bucketDir); err != nil {
			writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		path := filepath.Join(bucketDir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), fs.ModePerm); err != nil {
			writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			os.WriteFile(path+".content-type", []byte(ct), 0o644)
		}
	case http.MethodGet:
		logger.Msg("s3 get")
		path := filepath.Join(bucketDir, filepath.FromSlash(key))
		fileBytes, err := os.ReadFile(path)
		if err != nil {
			writeError(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist")
			return
		}
		if ct, err := os.ReadFile(path + ".content-type"); err == nil {
			w.Header().Set("Content-Type", string(ct))
		}
		w.Write(fileBytes)
	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", r.Method+" is not supported")
	}
}

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(s3Error{Code: code, Message: message})
}

// Paths are /bucket or /bucket/key/with/slashes.
func bucketKey(r *http.Request) (string, string) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	return bucket, key
}
