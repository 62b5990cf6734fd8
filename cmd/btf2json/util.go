// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/dlog"

	"github.com/CaptWake/btf2json/internal/symbolmap"
	"github.com/CaptWake/btf2json/lib/textui"
)

// progressReader wraps a *bufio.Reader with a periodic progress report,
// the way the teacher's runeScanner tracks bytes consumed from a large
// JSON mappings file — here applied to the BTF blob and symbol map
// instead.
type progressReader struct {
	ctx            context.Context //nolint:containedctx // For detecting shutdown from methods
	progress       textui.Portion[int64]
	progressWriter *textui.Progress[textui.Portion[int64]]
	reader         *bufio.Reader
	closer         io.Closer
}

func newProgressReader(ctx context.Context, fh *os.File, field string) (*progressReader, error) {
	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	ctx = dlog.WithField(ctx, "btf2json.read-file", field)
	ret := &progressReader{
		ctx: ctx,
		progress: textui.Portion[int64]{
			D: fi.Size(),
		},
		progressWriter: textui.NewProgress[textui.Portion[int64]](ctx, dlog.LogLevelInfo, textui.Tunable(1*time.Second)),
		reader:         bufio.NewReader(fh),
		closer:         fh,
	}
	return ret, nil
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.reader.Read(p)
	pr.progress.N += int64(n)
	pr.progressWriter.Set(pr.progress)
	return n, err
}

func (pr *progressReader) Close() error {
	pr.progressWriter.Done()
	return pr.closer.Close()
}

func readBTFFile(ctx context.Context, filename string) ([]byte, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	pr, err := newProgressReader(ctx, fh, filename)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	defer func() {
		_ = pr.Close()
	}()
	return io.ReadAll(pr)
}

func readSymbolMap(ctx context.Context, filename string) ([]symbolmap.Symbol, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	pr, err := newProgressReader(ctx, fh, filename)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	defer func() {
		_ = pr.Close()
	}()
	return symbolmap.Parse(pr)
}

func writeJSONFile(w io.Writer, obj any, cfg lowmemjson.ReEncoder) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	cfg.Out = buffer
	return lowmemjson.Encode(&cfg, obj)
}
