// Package ocr provides the text detection oracles used by auto-cover.
//
// Two oracles are available:
//
//   - ScriptOracle runs EasyOCR through the Python runtime that package pyenv
//     locates, with the vendor directory the installer fills on PYTHONPATH.
//     This is the default engine.
//   - TesseractOracle uses the Tesseract engine via gosseract/v2 and needs no
//     Python runtime.
//
// Both return detection.Detection values: a polygon, a confidence in [0, 1]
// and the recognized text. Clustering happens in package detection.
//
// # Prerequisites
//
// Tesseract must be installed on the system for TesseractOracle:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// ScriptOracle needs a Python 3 interpreter. Its packages (easyocr, opencv)
// are installed on demand by package installer.
package ocr
