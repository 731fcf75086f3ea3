package support

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/unmark/internal/testutil"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// backgroundLevel is the gray level of generated images; the default mark is
// clearly detectable over it.
const backgroundLevel = 60

func (testCtx *TestContext) saveImage(name string, img image.Image) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aCleanImageOfSize(name string, width, height int) error {
	img := testutil.UniformImage(width, height, backgroundLevel)
	testCtx.Originals[name] = img
	return testCtx.saveImage(name, img)
}

func (testCtx *TestContext) aNoiseImageOfSize(name string, width, height int) error {
	img := testutil.NoiseImage(width, height, int64(width*height))
	testCtx.Originals[name] = img
	return testCtx.saveImage(name, img)
}

// aWatermarkedImageOfSize stores the clean original and writes the marked
// version.
func (testCtx *TestContext) aWatermarkedImageOfSize(name string, width, height int) error {
	clean := testutil.UniformImage(width, height, backgroundLevel)
	marked, err := addMark(clean)
	if err != nil {
		return err
	}
	testCtx.Originals[name] = clean
	testCtx.Marked[name] = marked
	return testCtx.saveImage(name, marked)
}

func (testCtx *TestContext) aWatermarkedCaptureOverGray(name string, level int) error {
	marked, err := addMark(testutil.UniformImage(200, 150, uint8(level))) //nolint:gosec // level comes from the feature file
	if err != nil {
		return err
	}
	return testCtx.saveImage(name, marked)
}

func (testCtx *TestContext) aDirectoryWithWatermarkedImages(dir string, n int) error {
	for i := 1; i <= n; i++ {
		if err := testCtx.aWatermarkedImageOfSize(filepath.Join(dir, fmt.Sprintf("img_%d.png", i)), 200, 150); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) aCorruptImage(name string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("this is not an image"), 0o600)
}

func addMark(img image.Image) (*image.NRGBA, error) {
	comp, err := watermark.NewCompositor()
	if err != nil {
		return nil, err
	}
	return comp.AddWatermark(img, watermark.Options{})
}

func (testCtx *TestContext) loadImage(name string) (*image.NRGBA, error) {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return imaging.Clone(img), nil
}

// compareImages fails when any RGB channel differs by more than tolerance.
func compareImages(name string, got, want *image.NRGBA, tolerance int) error {
	if got.Bounds() != want.Bounds() {
		return fmt.Errorf("%s has bounds %v, want %v", name, got.Bounds(), want.Bounds())
	}
	if d := testutil.MaxChannelDiff(got, want, want.Bounds()); d > tolerance {
		return fmt.Errorf("%s differs from the reference by %d (tolerance %d)", name, d, tolerance)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldMatchTheCleanOriginalOf(name, original string, tolerance int) error {
	want, ok := testCtx.Originals[original]
	if !ok {
		return fmt.Errorf("no clean original recorded for %s", original)
	}
	got, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	return compareImages(name, got, want, tolerance)
}

func (testCtx *TestContext) theImageShouldBeUnchanged(name string) error {
	want, ok := testCtx.Marked[name]
	if !ok {
		want, ok = testCtx.Originals[name]
	}
	if !ok {
		return fmt.Errorf("no reference recorded for %s", name)
	}
	got, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	return compareImages(name, got, want, 0)
}

// theImageShouldCarryTheMark checks name against the clean original of
// original with the mark composited on.
func (testCtx *TestContext) theImageShouldCarryTheMark(name, original string) error {
	clean, ok := testCtx.Originals[original]
	if !ok {
		return fmt.Errorf("no clean original recorded for %s", original)
	}
	want, err := addMark(clean)
	if err != nil {
		return err
	}
	got, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	return compareImages(name, got, want, 0)
}

func (testCtx *TestContext) theAlphaMapShouldMatchTheDefaultSmallMatte(name string) error {
	got, err := watermark.LoadAlphaMap(testCtx.Path(name))
	if err != nil {
		return err
	}
	want, err := watermark.DefaultAlphaMap(watermark.SmallSize)
	if err != nil {
		return err
	}
	if got.Size() != want.Size() {
		return fmt.Errorf("alpha map is %v, want %v", got.Size(), want.Size())
	}
	for y := range want.Height() {
		for x := range want.Width() {
			if d := got.At(x, y) - want.At(x, y); d > 0.01 || d < -0.01 {
				return fmt.Errorf("alpha at (%d,%d) is %.4f, want %.4f", x, y, got.At(x, y), want.At(x, y))
			}
		}
	}
	return nil
}

func (testCtx *TestContext) aDirectory(name string) error {
	if name == "" {
		return errors.New("empty directory name")
	}
	return os.MkdirAll(testCtx.Path(name), 0o750)
}

// RegisterImageSteps registers steps that create and check images.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a clean image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aCleanImageOfSize)
	sc.Step(`^a noisy image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aNoiseImageOfSize)
	sc.Step(`^a watermarked image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aWatermarkedImageOfSize)
	sc.Step(`^a watermarked capture "([^"]*)" over gray (\d+)$`, testCtx.aWatermarkedCaptureOverGray)
	sc.Step(`^a directory "([^"]*)" with (\d+) watermarked images$`, testCtx.aDirectoryWithWatermarkedImages)
	sc.Step(`^a directory "([^"]*)"$`, testCtx.aDirectory)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)

	sc.Step(`^the image "([^"]*)" should match the clean original of "([^"]*)" within (\d+)$`,
		testCtx.theImageShouldMatchTheCleanOriginalOf)
	sc.Step(`^the image "([^"]*)" should be unchanged$`, testCtx.theImageShouldBeUnchanged)
	sc.Step(`^the image "([^"]*)" should carry the mark over "([^"]*)"$`, testCtx.theImageShouldCarryTheMark)
	sc.Step(`^the alpha map "([^"]*)" should match the default small matte$`, testCtx.theAlphaMapShouldMatchTheDefaultSmallMatte)
}
