package repository

import "errors"

var ErrNotFound = errors.New("список задач не найден")
var ErrDirectoryNotFound = errors.New("каталог хранилища не найден")
var ErrFileNotFound = errors.New("файл списка не найден")
var ErrInvalidData = errors.New("некорректные данные в хранилище")
