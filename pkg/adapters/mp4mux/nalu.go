package mp4mux

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
)

// splitAccessUnit returns the NAL units of an Annex B access unit.
func splitAccessUnit(data []byte) ([][]byte, error) {
	nalus, err := h264.AnnexBUnmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal annex b: %w", err)
	}
	return nalus, nil
}

// parameterSets returns the first SPS and PPS found in nalus.
func parameterSets(nalus [][]byte) (sps, pps []byte) {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if sps == nil {
				sps = append([]byte(nil), nalu...)
			}
		case h264.NALUTypePPS:
			if pps == nil {
				pps = append([]byte(nil), nalu...)
			}
		}
	}
	return sps, pps
}

// extraDataParameterSets reads SPS and PPS from codec extradata, which is
// either an AVCDecoderConfigurationRecord or an Annex B byte stream.
func extraDataParameterSets(extra []byte) (sps, pps []byte, err error) {
	if len(extra) == 0 {
		return nil, nil, nil
	}
	if extra[0] == 1 {
		rec, err := avc.DecodeAVCDecConfRec(extra)
		if err != nil {
			return nil, nil, fmt.Errorf("decode avcC: %w", err)
		}
		if len(rec.SPSnalus) > 0 {
			sps = rec.SPSnalus[0]
		}
		if len(rec.PPSnalus) > 0 {
			pps = rec.PPSnalus[0]
		}
		return sps, pps, nil
	}
	nalus, err := splitAccessUnit(extra)
	if err != nil {
		return nil, nil, err
	}
	sps, pps = parameterSets(nalus)
	return sps, pps, nil
}

// toAVCC converts NAL units into length-prefixed sample data. Parameter
// sets are dropped since the sample description carries them.
func toAVCC(nalus [][]byte) ([]byte, error) {
	filtered := make([][]byte, 0, len(nalus))
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS, h264.NALUTypePPS, h264.NALUTypeAccessUnitDelimiter:
			continue
		}
		filtered = append(filtered, nalu)
	}
	return h264.AVCCMarshal(filtered)
}
