package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/iframer/extract"
	"github.com/use-agent/iframer/resolver"
)

func TestRender(t *testing.T) {
	got := Render(resolver.EmbedDescriptor{
		EmbedURL: "https://games.test/en_US/foo/index.html",
		Width:    "100%",
		Height:   "600",
	})
	assert.Equal(t,
		`<iframe src="https://games.test/en_US/foo/index.html" width="100%" height="600" scrolling="no" frameborder="0" allow="autoplay; fullscreen; focus-without-user-activation *;" allowfullscreen></iframe>`,
		got)
}

func TestRenderGeneric_Escapes(t *testing.T) {
	got := RenderGeneric(extract.Iframe{Src: `https://x.test/?a=1&b="2"`, Width: "100%", Height: "500px"})
	assert.Equal(t,
		`<iframe src="https://x.test/?a=1&amp;b=&#34;2&#34;" width="100%" height="500px" scrolling="no" frameborder="0" allowfullscreen></iframe>`,
		got)
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want string
	}{
		{
			name: "defaults",
			in:   Params{URL: "https://x.test/"},
			want: `<iframe src="https://x.test/" width="100%" height="500" scrolling="no" style="border: none;" allowfullscreen></iframe>`,
		},
		{
			name: "solid border",
			in:   Params{URL: "https://x.test/", Width: "800", Height: "450", Scrolling: "auto", Border: "solid"},
			want: `<iframe src="https://x.test/" width="800" height="450" scrolling="auto" style="border: 1px solid #ccc;" allowfullscreen></iframe>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Generate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_Invalid(t *testing.T) {
	_, err := Generate(Params{})
	assert.ErrorIs(t, err, ErrMissingURL)

	_, err = Generate(Params{URL: "javascript:alert(1)"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = Generate(Params{URL: "https://x.test/", Scrolling: "maybe"})
	assert.Error(t, err)

	_, err = Generate(Params{URL: "https://x.test/", Border: "dashed"})
	assert.Error(t, err)
}
