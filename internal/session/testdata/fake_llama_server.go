package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	var model, host, port string
	var ctxSize, threads int
	var exitEarly bool
	// subset of llama-server flags passed by SpawnEngine
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.IntVar(&ctxSize, "c", 0, "context size")
	flag.IntVar(&threads, "t", 0, "threads")
	flag.BoolVar(&exitEarly, "exit-early", false, "fail before listening")
	flag.Parse()

	if exitEarly {
		fmt.Fprintln(os.Stderr, "error: failed to load model")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"hello from ", filepath.Base(model)} {
			b, _ := json.Marshal(map[string]any{"choices": []map[string]string{{"text": frag}}})
			fmt.Fprintf(w, "data: %s\n\n", b)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
