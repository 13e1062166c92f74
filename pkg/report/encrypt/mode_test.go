package encrypt

import (
	"bytes"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModes(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"kind":"sequential_read","throughput_mb_s":31.5}`), 100)
	key, err := MakeRandomAESKey()
	require.NoError(t, err)

	for _, mode := range []Mode{ModeIdentity, ModeAESCTR, ModeAESOFB} {
		t.Run(mode.String(), func(t *testing.T) {
			parsed, err := ParseMode(mode.AlgoName())
			require.NoError(t, err)
			require.Equal(t, mode, parsed)

			var buf bytes.Buffer
			wtr, initVect, err := mode.NewWriter(&buf, key)
			require.NoError(t, err)
			_, err = wtr.Write(payload)
			require.NoError(t, err)
			require.NoError(t, wtr.Close())
			require.Len(t, buf.Bytes(), len(payload))
			if mode != ModeIdentity {
				require.NotEqual(t, payload, buf.Bytes())
			}

			rdr, err := mode.NewReader(&buf, key, initVect)
			require.NoError(t, err)
			roundTrip, err := io.ReadAll(rdr)
			require.NoError(t, err)
			require.Equal(t, payload, roundTrip)
		})
	}

	_, err = ParseMode("des")
	require.Error(t, err)
	_, err = ModeAESCTR.NewReader(nil, key, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(hex.EncodeToString(bytes.Repeat([]byte{7}, 16)))
	require.NoError(t, err)
	require.Len(t, key, 16)

	for _, bad := range []string{"", "zz", hex.EncodeToString(make([]byte, 32)), hex.EncodeToString(make([]byte, 20))} {
		_, err = ParseKey(bad)
		require.Error(t, err, "key %q", bad)
	}
}
