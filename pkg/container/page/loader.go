// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package page

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/config"
	"github.com/matrixorigin/moblock/pkg/logutil"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

// Loader materializes the lazy blocks of pages on a shared worker pool.
type Loader struct {
	pool *ants.Pool
}

func NewLoader(cfg config.LoaderConfig) (*Loader, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		logutil.Error(context.Background(), "page loader task panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, moerr.ConvertGoError(context.Background(), err)
	}
	return &Loader{pool: pool}, nil
}

// Close releases the worker pool.
func (l *Loader) Close() {
	l.pool.Release()
}

// Load returns pages with every lazy block loaded, in the order given.
// Blocks of all pages load concurrently. When ctx is done no more blocks are
// submitted and ctx.Err() is returned once the submitted ones finish.
func (l *Loader) Load(ctx context.Context, pages ...*Page) ([]*Page, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

submit:
	for _, p := range pages {
		for channel, b := range p.blocks {
			if b.IsLoaded() {
				continue
			}
			if err := ctx.Err(); err != nil {
				setErr(err)
				break submit
			}
			channel, b := channel, b
			wg.Add(1)
			err := l.pool.Submit(func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err := moerr.ConvertPanicError(ctx, r)
						logutil.Warn(ctx, "load lazy column failed",
							zap.Int("channel", channel),
							zap.Error(err))
						setErr(err)
					}
				}()
				b.LoadedBlock()
			})
			if err != nil {
				wg.Done()
				setErr(moerr.ConvertGoError(ctx, err))
				break submit
			}
			v2.PageLoaderTaskCounter.Inc()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	loaded := make([]*Page, len(pages))
	for i, p := range pages {
		loaded[i] = p.LoadedPage()
	}
	return loaded, nil
}
