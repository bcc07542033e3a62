package model

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// SaveModel は v を gzip 圧縮した gob 形式でファイルに保存する
//
// パラメータ:
//   - v: 保存する値（エクスポートされたフィールドのみが保存される）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	err := model.SaveModel(container, "pbmc.adata.gob.gz")
func SaveModel(v interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	return SaveModelToWriter(v, file)
}

// LoadModel はSaveModelで保存したファイルを v に読み込む
//
// パラメータ:
//   - v: 読み込み先（ポインタ）
//   - filename: 読み込み元のファイルパス
func LoadModel(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadModelFromReader(v, file)
}

// SaveModelToWriter は v を gzip 圧縮した gob 形式で w に書き出す
func SaveModelToWriter(v interface{}, w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush compressed stream: %w", err)
	}
	return nil
}

// LoadModelFromReader は r から gzip 圧縮された gob を v に読み込む
func LoadModelFromReader(v interface{}, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}
