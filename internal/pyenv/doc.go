// Package pyenv locates the Python runtime used to install and run the
// text-recognition dependencies, and checks which of them are present.
//
// Dependencies are installed into a private vendor directory (pip --target)
// rather than the system site-packages, so presence checks look inside that
// directory and processes that need the packages get it on PYTHONPATH.
package pyenv
