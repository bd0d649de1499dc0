package canopywatch

import "testing"

func TestUseThisPixelGoodValue(t *testing.T) {
	if !UseThisPixel(0) {
		t.Error("an all-clear QAI value should be usable")
	}
}

func TestUseThisPixelOffFlag(t *testing.T) {
	var qai int16 = 1 << qaiBitOff
	if UseThisPixel(qai) {
		t.Error("off flag should reject the pixel")
	}
}

func TestUseThisPixelCloudOpaque(t *testing.T) {
	var qai int16 = 2 << qaiBitCld // cloud = 2 (opaque)
	if UseThisPixel(qai) {
		t.Error("opaque cloud should reject the pixel")
	}
}

func TestUseThisPixelSnow(t *testing.T) {
	var qai int16 = 1 << qaiBitSnw
	if UseThisPixel(qai) {
		t.Error("snow flag should reject the pixel")
	}
}

func TestUseThisPixelShadowIllumination(t *testing.T) {
	var qai int16 = 3 << qaiBitIll // illumination = 3 (shadow)
	if UseThisPixel(qai) {
		t.Error("shadow illumination should reject the pixel")
	}
}

func TestUseThisPixelWaterIsIgnored(t *testing.T) {
	var qai int16 = 1 << 5 // water bit, not gated per original ruleset
	if !UseThisPixel(qai) {
		t.Error("water flag should not reject the pixel (commented out upstream)")
	}
}
