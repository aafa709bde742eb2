package register

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bstream/errs"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name        string
		chunkCount  int
		chunkSize   int
		handleWidth int
		wantErr     bool
	}{
		{"valid small", 4, 16, 1, false},
		{"valid wide handles", 8, 128, 4, false},
		{"zero chunk count", 0, 16, 2, true},
		{"negative chunk size", 4, -1, 2, true},
		{"handle width 3", 4, 16, 3, true},
		{"handle width 8", 4, 16, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New[string](tt.chunkCount, tt.chunkSize, tt.handleWidth)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.chunkCount*tt.chunkSize, r.Capacity())
			require.Equal(t, 0, r.Size())
		})
	}
}

func TestAddAssignsSequentialHandles(t *testing.T) {
	r, err := New[string](4, 4, 2)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		handle, err := r.Add(fmt.Sprintf("entry-%d", i))
		require.NoError(t, err)
		require.Equal(t, i, handle)
	}
	require.Equal(t, 10, r.Size())

	for i := 0; i < 10; i++ {
		require.Equal(t, fmt.Sprintf("entry-%d", i), r.Get(i))
		require.Equal(t, fmt.Sprintf("entry-%d", i), r.Entry(i))
	}
}

func TestCapacityErrorLeavesSizeUnchanged(t *testing.T) {
	r, err := New[int](2, 3, 1)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := r.Add(i)
		require.NoError(t, err)
	}
	require.Equal(t, 6, r.Size())

	_, err = r.Add(99)
	require.ErrorIs(t, err, errs.ErrRegisterFull)
	require.ErrorIs(t, err, errs.ErrRegisterFull)
	require.Equal(t, 6, r.Size())

	// Existing handles are untouched by the failed add.
	require.Equal(t, 5, r.Get(5))
}

func TestGetStableUnderConcurrentAdd(t *testing.T) {
	const (
		writers       = 8
		addsPerWriter = 200
	)
	r, err := New[int](64, 32, 4)
	require.NoError(t, err)

	seed, err := r.Add(-1)
	require.NoError(t, err)
	require.Equal(t, 0, seed)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers hammer Get/Size on already-published handles while writers add.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := r.Size()
				for h := 0; h < n; h++ {
					_ = r.Get(h)
				}
			}
		}()
	}

	var writerWg sync.WaitGroup
	for w := 0; w < writers; w++ {
		writerWg.Add(1)
		go func(w int) {
			defer writerWg.Done()
			for i := 0; i < addsPerWriter; i++ {
				_, err := r.Add(w*addsPerWriter + i)
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	writerWg.Wait()
	close(stop)
	wg.Wait()

	require.Equal(t, 1+writers*addsPerWriter, r.Size())
	require.Equal(t, -1, r.Get(0))
}

func TestAddListener(t *testing.T) {
	r, err := New[string](2, 4, 1)
	require.NoError(t, err)

	var seen []string
	r.AddListener(func(reg *Register[string], entry string) {
		require.Same(t, r, reg)
		seen = append(seen, entry)
	})

	_, err = r.Add("a")
	require.NoError(t, err)
	_, err = r.Add("b")
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b"}, seen)
}
