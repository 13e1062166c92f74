package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModes(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"kind":"random_seek","mean":0.00042}`), 200)

	for _, mode := range []Mode{ModeIdentity, ModeS2, ModeGzip} {
		t.Run(mode.String(), func(t *testing.T) {
			parsed, err := ParseMode(mode.AlgoName())
			require.NoError(t, err)
			require.Equal(t, mode, parsed)

			var buf bytes.Buffer
			wtr, err := mode.NewWriter(&buf)
			require.NoError(t, err)
			_, err = wtr.Write(payload)
			require.NoError(t, err)
			require.NoError(t, wtr.Close())
			if mode != ModeIdentity {
				require.Less(t, buf.Len(), len(payload), "repetitive data should shrink")
			}

			rdr, err := mode.NewReader(&buf)
			require.NoError(t, err)
			roundTrip, err := io.ReadAll(rdr)
			require.NoError(t, err)
			require.Equal(t, payload, roundTrip)
		})
	}

	_, err := ParseMode("zstd")
	require.Error(t, err)
	require.Equal(t, ModeIdentity, ModeFromName(""))
	require.Equal(t, ".gz", ModeGzip.Ext())
}
