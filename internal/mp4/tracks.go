package mp4

import (
	"fmt"
	"io"

	gomp4 "github.com/abema/go-mp4"
)

type trackIDs struct {
	meta  uint32
	video uint32
}

// scanTracks walks moov/trak and returns the IDs of the first GPMF track
// (handler "meta" with a "gpmd" sample entry) and the first video track.
func scanTracks(r io.ReadSeeker) (trackIDs, error) {
	var ids trackIDs
	traks, err := gomp4.ExtractBox(r, nil, gomp4.BoxPath{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak()})
	if err != nil {
		return ids, fmt.Errorf("mp4: read tracks: %w", err)
	}

	for _, trak := range traks {
		handler, err := handlerType(r, trak)
		if err != nil {
			return ids, err
		}
		switch {
		case handler == handlerMeta && ids.meta == 0:
			entries, err := gomp4.ExtractBox(r, trak, gomp4.BoxPath{
				gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd(), boxTypeGPMD,
			})
			if err != nil {
				return ids, fmt.Errorf("mp4: read sample entries: %w", err)
			}
			if len(entries) == 0 {
				continue
			}
			if ids.meta, err = trackID(r, trak); err != nil {
				return ids, err
			}
		case handler == handlerVideo && ids.video == 0:
			if ids.video, err = trackID(r, trak); err != nil {
				return ids, err
			}
		}
	}
	return ids, nil
}

func handlerType(r io.ReadSeeker, trak *gomp4.BoxInfo) ([4]byte, error) {
	boxes, err := gomp4.ExtractBoxWithPayload(r, trak, gomp4.BoxPath{gomp4.BoxTypeMdia(), gomp4.BoxTypeHdlr()})
	if err != nil {
		return [4]byte{}, fmt.Errorf("mp4: read hdlr: %w", err)
	}
	for _, b := range boxes {
		if hdlr, ok := b.Payload.(*gomp4.Hdlr); ok {
			return hdlr.HandlerType, nil
		}
	}
	return [4]byte{}, nil
}

func trackID(r io.ReadSeeker, trak *gomp4.BoxInfo) (uint32, error) {
	boxes, err := gomp4.ExtractBoxWithPayload(r, trak, gomp4.BoxPath{gomp4.BoxTypeTkhd()})
	if err != nil {
		return 0, fmt.Errorf("mp4: read tkhd: %w", err)
	}
	for _, b := range boxes {
		if tkhd, ok := b.Payload.(*gomp4.Tkhd); ok {
			return tkhd.TrackID, nil
		}
	}
	return 0, fmt.Errorf("%w: track without tkhd", ErrBadSampleTable)
}
