package stub_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlctl/internal/domain/entity"
	busmem "crawlctl/internal/infra/adapter/bus/memory"
	"crawlctl/internal/infra/adapter/processor/stub"
)

func encodedPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTask(source entity.Source) entity.FetchTask {
	return entity.FetchTask{Source: source, Event: entity.SourceEvent{UUID: uuid.New(), URL: "https://example.com/x.png"}}
}

func TestProcess_DecodableImagePublishesBoundedThumbnailDimensions(t *testing.T) {
	bus := busmem.New()
	metadata, err := bus.MetadataProducer(context.Background())
	require.NoError(t, err)

	p := stub.New(metadata)

	var recorded string
	p.Process(context.Background(), encodedPNG(t, 1280, 960), newTask("flickr"), func(code string) {
		recorded = code
	})

	assert.Equal(t, "200", recorded)

	events := bus.DrainMetadata()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Width)
	require.NotNil(t, events[0].Height)
	assert.LessOrEqual(t, *events[0].Width, 640)
	assert.LessOrEqual(t, *events[0].Height, 480)
	// 1280x960 scaled to fit 640x480 preserves the 4:3 aspect ratio exactly.
	assert.Equal(t, 640, *events[0].Width)
	assert.Equal(t, 480, *events[0].Height)
}

func TestProcess_SmallImageIsNotUpscaled(t *testing.T) {
	p := stub.New(nil)

	var recorded string
	p.Process(context.Background(), encodedPNG(t, 100, 50), newTask("met"), func(code string) {
		recorded = code
	})

	assert.Equal(t, "200", recorded)
}

func TestProcess_UndecodableBodyRecordsUnidentifiedImageError(t *testing.T) {
	p := stub.New(nil)

	var recorded string
	p.Process(context.Background(), []byte("not an image"), newTask("flickr"), func(code string) {
		recorded = code
	})

	assert.Equal(t, entity.ExpectedUnidentifiedImage, recorded)
}
